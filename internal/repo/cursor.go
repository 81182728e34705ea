package repo

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"haventory/internal/apperr"
	"haventory/internal/model"
)

const defaultCursorSecret = "dev-cursor-secret"

// Cursor is a decoded position marker: the last returned (sort key, id) under a sort.
type Cursor struct {
	Sort model.Sort
	Key  model.SortKey
	ID   string
}

type cursorClaims struct {
	Field string `json:"f"`
	Order string `json:"o"`
	KeyS  string `json:"ks,omitempty"`
	KeyN  int64  `json:"kn,omitempty"`
	ID    string `json:"id"`
	jwt.RegisteredClaims
}

// CursorCodec signs cursors so clients cannot forge positions.
type CursorCodec struct {
	secret []byte
}

func NewCursorCodec(secret string) *CursorCodec {
	if secret == "" {
		secret = defaultCursorSecret
	}
	return &CursorCodec{secret: []byte(secret)}
}

func (c *CursorCodec) Encode(cur Cursor) (string, error) {
	claims := cursorClaims{
		Field: string(cur.Sort.Field),
		Order: string(cur.Sort.Order),
		KeyS:  cur.Key.S,
		KeyN:  cur.Key.N,
		ID:    cur.ID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies the signature and shape of a cursor token.
func (c *CursorCodec) Decode(token string) (Cursor, error) {
	var claims cursorClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Cursor{}, &apperr.Error{Code: apperr.CodeValidation, Message: "invalid cursor", Err: err}
	}
	if claims.ID == "" {
		return Cursor{}, &apperr.Error{Code: apperr.CodeValidation, Message: "invalid cursor", Err: errors.New("missing id")}
	}
	return Cursor{
		Sort: model.Sort{Field: model.SortField(claims.Field), Order: model.SortOrder(claims.Order)},
		Key:  model.SortKey{S: claims.KeyS, N: claims.KeyN},
		ID:   claims.ID,
	}, nil
}
