package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"design-assistant-backend/internal/auth/domain"
	"design-assistant-backend/internal/auth/repository"
	taskUsecase "design-assistant-backend/internal/task/usecase"
	"design-assistant-backend/pkg/config"
	"design-assistant-backend/pkg/crypto"
	"design-assistant-backend/pkg/monday"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	oauthStateTTL  = 10 * time.Minute
	handoffCodeTTL = 10 * time.Minute
	appSessionTTL  = 24 * time.Hour
)

var (
	ErrInvalidState   = errors.New("invalid oauth state")
	ErrInvalidSession = errors.New("invalid session token")
	ErrInvalidCode    = errors.New("invalid or expired handoff code")
	ErrNotLinked      = errors.New("monday account not linked")
	ErrAccessDenied   = errors.New("access denied")
)

// AuthUsecase owns the monday OAuth flow, the handoff exchange and app
// session tokens. It also serves decrypted access tokens to the sync
// pipeline (taskUsecase.TokenProvider).
type AuthUsecase struct {
	links repository.MondayLinkRepository
	codes repository.HandoffCodeRepository
	tasks *taskUsecase.TaskUsecase

	mondayClient *monday.Client
	oauth        *oauth2.Config

	jwtSecret      string
	signingSecret  string
	encryptionKey  string
	mainAppBaseURL string
}

func NewAuthUsecase(
	links repository.MondayLinkRepository,
	codes repository.HandoffCodeRepository,
	tasks *taskUsecase.TaskUsecase,
	mondayClient *monday.Client,
	cfg *config.Config,
) *AuthUsecase {
	return &AuthUsecase{
		links:          links,
		codes:          codes,
		tasks:          tasks,
		mondayClient:   mondayClient,
		oauth:          monday.OAuthConfig(cfg.MondayClientID, cfg.MondayClientSecret, cfg.MondayOAuthRedirectURI),
		jwtSecret:      cfg.JWTSecret,
		signingSecret:  cfg.MondaySigningSecret,
		encryptionKey:  cfg.EncryptionKey,
		mainAppBaseURL: cfg.MainAppBaseURL,
	}
}

// ExternalTaskKey is the stable key for one monday item in one account.
func ExternalTaskKey(accountID, itemID string) string {
	return fmt.Sprintf("monday-%s-%s", accountID, itemID)
}

// LoginURL returns the monday authorization URL with a signed short-lived
// state token.
func (uc *AuthUsecase) LoginURL() (string, error) {
	state := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"nonce": uuid.New().String(),
		"exp":   time.Now().Add(oauthStateTTL).Unix(),
	})
	signed, err := state.SignedString([]byte(uc.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return uc.oauth.AuthCodeURL(signed), nil
}

// HandleCallback finishes the OAuth flow: verifies state, exchanges the
// code, resolves the token owner and stores the token encrypted. Returns the
// frontend URL to redirect to.
func (uc *AuthUsecase) HandleCallback(ctx context.Context, code, state string) (string, error) {
	if _, err := jwt.Parse(state, func(t *jwt.Token) (interface{}, error) {
		return []byte(uc.jwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"})); err != nil {
		return "", ErrInvalidState
	}

	token, err := uc.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("code exchange failed: %w", err)
	}

	userID, accountID, err := uc.mondayClient.Me(ctx, token.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to resolve token owner: %w", err)
	}

	encrypted, err := crypto.Encrypt(token.AccessToken, uc.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt access token: %w", err)
	}

	if err := uc.links.Upsert(&domain.MondayLink{
		AccountID:            accountID,
		UserID:               userID,
		EncryptedAccessToken: encrypted,
	}); err != nil {
		return "", err
	}

	log.Printf("[Auth] Linked monday account %s (user %s)", accountID, userID)
	return uc.mainAppBaseURL + "/monday/connected", nil
}

// AccessTokenForAccount returns the decrypted access token for an account.
// Implements the sync pipeline's TokenProvider.
func (uc *AuthUsecase) AccessTokenForAccount(accountID string) (string, error) {
	link, err := uc.links.FindByAccount(accountID)
	if err != nil {
		return "", err
	}
	if link == nil {
		return "", ErrNotLinked
	}
	return crypto.Decrypt(link.EncryptedAccessToken, uc.encryptionKey)
}

// verifySessionToken validates a monday app session token (HS256 with the
// app signing secret; monday sets an audience we do not pin) and returns the
// embedded user and account ids.
func (uc *AuthUsecase) verifySessionToken(sessionToken string) (userID, accountID string, err error) {
	token, err := jwt.Parse(sessionToken, func(t *jwt.Token) (interface{}, error) {
		return []byte(uc.signingSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", "", ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidSession
	}

	// monday nests the identity under "dat".
	if dat, ok := claims["dat"].(map[string]interface{}); ok {
		userID = claimString(dat, "user_id", "userId")
		accountID = claimString(dat, "account_id", "accountId")
	} else {
		userID = claimString(claims, "user_id", "userId")
		accountID = claimString(claims, "account_id", "accountId")
	}
	if accountID == "" {
		return "", "", ErrInvalidSession
	}
	return userID, accountID, nil
}

func claimString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// InitHandoff mints a one-time code for the item the monday iframe is
// showing. The session token proves the request comes from inside monday.
func (uc *AuthUsecase) InitHandoff(sessionToken, boardID, itemID, itemName string) (string, error) {
	_, accountID, err := uc.verifySessionToken(sessionToken)
	if err != nil {
		return "", err
	}
	if itemID == "" {
		return "", fmt.Errorf("itemId is required")
	}

	code := &domain.HandoffCode{
		Code:            uuid.New().String(),
		ExternalTaskKey: ExternalTaskKey(accountID, itemID),
		AccountID:       accountID,
		BoardID:         boardID,
		ItemID:          itemID,
		ItemName:        itemName,
		ExpiresAt:       time.Now().Add(handoffCodeTTL),
	}
	if err := uc.codes.Create(code); err != nil {
		return "", err
	}
	return code.Code, nil
}

// HandoffResult is what the frontend receives when redeeming a code.
type HandoffResult struct {
	ExternalTaskKey string `json:"external_task_key"`
	ItemName        string `json:"item_name"`
	SessionToken    string `json:"session_token"`
	SyncStatus      string `json:"sync_status"`
}

// ResolveHandoff redeems a one-time code: verifies the linked account still
// has access to the item, registers the task on first contact, kicks a
// background sync and mints the app session token scoped to that task.
func (uc *AuthUsecase) ResolveHandoff(ctx context.Context, code string) (*HandoffResult, error) {
	handoff, err := uc.codes.Consume(code)
	if err != nil {
		return nil, err
	}
	if handoff == nil || handoff.Expired(time.Now()) {
		return nil, ErrInvalidCode
	}

	accessToken, err := uc.AccessTokenForAccount(handoff.AccountID)
	if err != nil {
		return nil, err
	}

	canRead, err := uc.mondayClient.CanReadItem(ctx, accessToken, handoff.ItemID)
	if err != nil {
		return nil, err
	}
	if !canRead {
		return nil, ErrAccessDenied
	}

	if _, err := uc.tasks.CreateTaskIfMissing(
		handoff.ExternalTaskKey, handoff.AccountID, handoff.BoardID,
		handoff.ItemID, handoff.ItemName,
	); err != nil {
		return nil, err
	}

	ack, err := uc.tasks.RequestSync(handoff.ExternalTaskKey, false)
	if err != nil {
		// A sync that cannot start is not fatal to the handoff: the user
		// can retry from the task surface.
		log.Printf("[Auth] Handoff sync kick failed for %s: %v", handoff.ExternalTaskKey, err)
		ack = ""
	}

	sessionToken, err := uc.mintAppToken(handoff.ExternalTaskKey, handoff.AccountID)
	if err != nil {
		return nil, err
	}

	return &HandoffResult{
		ExternalTaskKey: handoff.ExternalTaskKey,
		ItemName:        handoff.ItemName,
		SessionToken:    sessionToken,
		SyncStatus:      ack,
	}, nil
}

func (uc *AuthUsecase) mintAppToken(externalTaskKey, accountID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"task_key":   externalTaskKey,
		"account_id": accountID,
		"exp":        time.Now().Add(appSessionTTL).Unix(),
		"iat":        time.Now().Unix(),
	})
	return token.SignedString([]byte(uc.jwtSecret))
}

// ValidateAppToken checks a bearer token and returns the task scope it
// grants.
func (uc *AuthUsecase) ValidateAppToken(tokenString string) (externalTaskKey, accountID string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(uc.jwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", "", ErrInvalidSession
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidSession
	}
	externalTaskKey, _ = claims["task_key"].(string)
	accountID, _ = claims["account_id"].(string)
	if externalTaskKey == "" {
		return "", "", ErrInvalidSession
	}
	return externalTaskKey, accountID, nil
}
