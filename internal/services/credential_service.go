package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/mailmirror/core/internal/crypto"
	"github.com/mailmirror/core/internal/database/models"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

var (
	// ErrCredentialNotFound indicates no credential is stored for the mailbox
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrRefreshFailed indicates the provider rejected or failed the token refresh
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrInvalidTokenPayload indicates the decrypted payload could not be decoded
	ErrInvalidTokenPayload = errors.New("invalid token payload")
)

// expirySlack refreshes tokens slightly before their stated expiry
const expirySlack = 2 * time.Minute

// accountColors is the palette display colors are assigned from
var accountColors = []string{"#4285F4", "#EA4335", "#FBBC05", "#34A853", "#9C27B0", "#FF7043"}

// TokenPayload is the decrypted content of a credential's token blob
type TokenPayload struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// OAuthToken converts the payload to the oauth2 token form
func (p TokenPayload) OAuthToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		Expiry:       p.Expiry,
	}
}

// CredentialService manages encrypted Gmail credentials
type CredentialService struct {
	db       *gorm.DB
	cipher   *crypto.Cipher
	oauthCfg *oauth2.Config
}

// NewCredentialService creates a new CredentialService instance
func NewCredentialService(db *gorm.DB, cipher *crypto.Cipher, oauthCfg *oauth2.Config) *CredentialService {
	return &CredentialService{
		db:       db,
		cipher:   cipher,
		oauthCfg: oauthCfg,
	}
}

// GetByMailbox retrieves the credential for a mailbox address
func (s *CredentialService) GetByMailbox(mailbox string) (*models.Credential, error) {
	var cred models.Credential
	if err := s.db.Where("mailbox = ?", mailbox).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// GetByID retrieves a credential by ID
func (s *CredentialService) GetByID(id uint) (*models.Credential, error) {
	var cred models.Credential
	if err := s.db.First(&cred, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// ListAll retrieves every credential, active or not
func (s *CredentialService) ListAll() ([]models.Credential, error) {
	var creds []models.Credential
	if err := s.db.Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

// ListActive retrieves all active credentials
func (s *CredentialService) ListActive() ([]models.Credential, error) {
	var creds []models.Credential
	if err := s.db.Where("active = ?", true).Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

// ListByUserID retrieves all credentials owned by a user
func (s *CredentialService) ListByUserID(userID uint) ([]models.Credential, error) {
	var creds []models.Credential
	if err := s.db.Where("user_id = ?", userID).Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

// ListActiveByUserID retrieves a user's active credentials
func (s *CredentialService) ListActiveByUserID(userID uint) ([]models.Credential, error) {
	var creds []models.Credential
	if err := s.db.Where("user_id = ? AND active = ?", userID, true).Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

// AccessibleMailboxes resolves which mailbox addresses a user may read:
// admins see every active mailbox, others only their own.
func (s *CredentialService) AccessibleMailboxes(user *models.User) ([]string, error) {
	var creds []models.Credential
	var err error
	if user.IsAdmin {
		creds, err = s.ListActive()
	} else {
		creds, err = s.ListActiveByUserID(user.ID)
	}
	if err != nil {
		return nil, err
	}

	mailboxes := make([]string, 0, len(creds))
	for _, c := range creds {
		mailboxes = append(mailboxes, c.Mailbox)
	}
	return mailboxes, nil
}

// Upsert stores a token payload for (user, mailbox), creating the
// credential on first authorization and re-activating it on repeat.
func (s *CredentialService) Upsert(userID uint, mailbox string, payload TokenPayload) (*models.Credential, error) {
	encrypted, err := s.encryptPayload(payload)
	if err != nil {
		return nil, err
	}

	var existing models.Credential
	err = s.db.Where("user_id = ? AND mailbox = ?", userID, mailbox).First(&existing).Error
	if err == nil {
		updates := map[string]interface{}{
			"token_encrypted": encrypted,
			"token_expiry":    payload.Expiry,
			"active":          true,
		}
		if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cred := &models.Credential{
		UserID:         userID,
		Mailbox:        mailbox,
		TokenEncrypted: encrypted,
		TokenExpiry:    payload.Expiry,
		Active:         true,
		Color:          colorFor(mailbox),
	}
	if err := s.db.Create(cred).Error; err != nil {
		return nil, err
	}
	return cred, nil
}

// SetActive flips the active flag. Credentials are soft-disabled, never
// hard-deleted while messages reference them.
func (s *CredentialService) SetActive(id uint, active bool) (*models.Credential, error) {
	cred, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	cred.Active = active
	if err := s.db.Save(cred).Error; err != nil {
		return nil, err
	}
	return cred, nil
}

// Decrypt returns the decrypted token payload of a credential
func (s *CredentialService) Decrypt(cred *models.Credential) (TokenPayload, error) {
	plain, err := s.cipher.Decrypt(cred.TokenEncrypted)
	if err != nil {
		return TokenPayload{}, err
	}

	var payload TokenPayload
	if err := json.Unmarshal([]byte(plain), &payload); err != nil {
		return TokenPayload{}, fmt.Errorf("%w: %v", ErrInvalidTokenPayload, err)
	}
	return payload, nil
}

// RefreshIfExpired exchanges the refresh token when the access token is
// at or past expiry. On success the new payload replaces the stored one
// in a single update; on any failure the stored payload is left exactly
// as it was and ErrRefreshFailed is returned.
func (s *CredentialService) RefreshIfExpired(ctx context.Context, cred *models.Credential) (TokenPayload, error) {
	payload, err := s.Decrypt(cred)
	if err != nil {
		return TokenPayload{}, err
	}

	if payload.AccessToken != "" && time.Now().Before(payload.Expiry.Add(-expirySlack)) {
		return payload, nil
	}

	if payload.RefreshToken == "" {
		return TokenPayload{}, fmt.Errorf("%w: no refresh token stored for %s", ErrRefreshFailed, cred.Mailbox)
	}

	token, err := s.oauthCfg.TokenSource(ctx, payload.OAuthToken()).Token()
	if err != nil {
		return TokenPayload{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	refreshed := TokenPayload{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Scopes:       payload.Scopes,
	}
	// Google often omits the refresh token on renewal; keep the old one
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = payload.RefreshToken
	}

	if err := s.storePayload(cred, refreshed); err != nil {
		return TokenPayload{}, err
	}
	return refreshed, nil
}

// storePayload persists a payload onto an existing credential row in a
// single update, so the record is never observed half-written.
func (s *CredentialService) storePayload(cred *models.Credential, payload TokenPayload) error {
	encrypted, err := s.encryptPayload(payload)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"token_encrypted": encrypted,
		"token_expiry":    payload.Expiry,
	}
	if err := s.db.Model(&models.Credential{}).Where("id = ?", cred.ID).Updates(updates).Error; err != nil {
		return err
	}

	cred.TokenEncrypted = encrypted
	cred.TokenExpiry = payload.Expiry
	return nil
}

func (s *CredentialService) encryptPayload(payload TokenPayload) (string, error) {
	blob, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return s.cipher.Encrypt(string(blob))
}

// colorFor picks a stable display color for a mailbox
func colorFor(mailbox string) string {
	h := fnv.New32a()
	h.Write([]byte(mailbox))
	return accountColors[int(h.Sum32())%len(accountColors)]
}
