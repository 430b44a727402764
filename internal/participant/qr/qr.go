package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"ms-checkout/internal/models"
	"time"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidToken = errors.New("invalid qr token")

// Claims is the sealed payload of a registration token.
type Claims struct {
	CheckoutID string `json:"c"`
	EventID    string `json:"e"`
	Document   string `json:"d"`
	TicketType string `json:"t"`
	Nonce      string `json:"n"`
	IssuedAt   int64  `json:"iat"`
}

// Generator seals participant claims with AES-GCM and renders them as QR images.
type Generator struct {
	secret []byte
	now    func() time.Time
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret))
	return &Generator{secret: hashed[:], now: time.Now}
}

// IssueToken satisfies models.TokenIssuer. Every call yields a different token.
func (g *Generator) IssueToken(p *models.Participant) (string, error) {
	nonce := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	data, err := json.Marshal(Claims{
		CheckoutID: p.CheckoutID,
		EventID:    p.EventID,
		Document:   p.Document,
		TicketType: string(p.TicketType),
		Nonce:      hex.EncodeToString(nonce),
		IssuedAt:   g.now().Unix(),
	})
	if err != nil {
		return "", err
	}
	return g.seal(data)
}

func (g *Generator) Decode(token string) (*Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	gcm, err := g.aead()
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrInvalidToken
	}
	plain, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(plain, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// PNG renders the token as a QR image of size x size pixels.
func (g *Generator) PNG(token string, size int) ([]byte, error) {
	if token == "" {
		return nil, fmt.Errorf("empty qr token")
	}
	return qrcode.Encode(token, qrcode.Medium, size)
}

func (g *Generator) seal(data []byte) (string, error) {
	gcm, err := g.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (g *Generator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(g.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
