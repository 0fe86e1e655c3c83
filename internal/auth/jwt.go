package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenKind string

// AdminToken authorizes dataset reloads and diagnostics.
const AdminToken TokenKind = "admin"

// Issuer is stamped on and required of every token this service handles.
const Issuer = "nearby-guide"

var (
	ErrNoSigningKey = errors.New("jwt manager has no private key")
	ErrWrongKind    = errors.New("token is not an admin token")
)

type JWTManager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
}

// Claims are the fields the admin guard relies on.
type Claims struct {
	Subject   string
	JTI       string
	Kind      TokenKind
	ExpiresAt time.Time
}

// NewJWTManager loads PEM keys from disk. An empty privatePath yields a
// verify-only manager, which is all the server needs.
func NewJWTManager(privatePath, publicPath, issuer string) (*JWTManager, error) {
	var privKey *rsa.PrivateKey
	if privatePath != "" {
		privPem, err := os.ReadFile(privatePath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		privKey, err = jwt.ParseRSAPrivateKeyFromPEM(privPem)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
	}

	pubPem, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPem)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return NewJWTManagerFromKeys(privKey, pubKey, issuer), nil
}

func NewJWTManagerFromKeys(priv *rsa.PrivateKey, pub *rsa.PublicKey, issuer string) *JWTManager {
	if pub == nil && priv != nil {
		pub = &priv.PublicKey
	}
	return &JWTManager{privateKey: priv, publicKey: pub, issuer: issuer}
}

// IssueAdminToken signs an RS256 admin token for subject.
func (m *JWTManager) IssueAdminToken(subject string, ttl time.Duration) (string, time.Time, error) {
	if m.privateKey == nil {
		return "", time.Time{}, ErrNoSigningKey
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)

	claims := jwt.MapClaims{
		"iss": m.issuer,
		"sub": subject,
		"iat": now.Unix(),
		"exp": exp.Unix(),
		"jti": uuid.New().String(),
		"typ": string(AdminToken),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tokenStr, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenStr, exp, nil
}

// VerifyToken checks the RS256 signature, expiry and issuer and returns the claims.
func (m *JWTManager) VerifyToken(tokenStr string) (Claims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodRS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.publicKey, nil
	}, jwt.WithLeeway(5*time.Second), jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, err
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	c := Claims{}
	c.Subject, _ = mc["sub"].(string)
	c.JTI, _ = mc["jti"].(string)
	if typ, _ := mc["typ"].(string); typ != "" {
		c.Kind = TokenKind(typ)
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// VerifyAdmin verifies tokenStr and requires it to be an admin token.
func (m *JWTManager) VerifyAdmin(tokenStr string) (Claims, error) {
	c, err := m.VerifyToken(tokenStr)
	if err != nil {
		return Claims{}, err
	}
	if c.Kind != AdminToken {
		return Claims{}, ErrWrongKind
	}
	return c, nil
}
