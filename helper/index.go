package helper

import (
	"errors"
	"fmt"
	"time"

	"fashion_shop/constants"
	"fashion_shop/model"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidClaims = errors.New("token claims invalid")

// GenerateAccessToken ký access token HS256 cho user
func GenerateAccessToken(secret []byte, tokenClaim model.TokenClaim, ttl time.Duration) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["userId"] = tokenClaim.UserId
	claims["username"] = tokenClaim.Username
	claims["role"] = tokenClaim.Role
	claims["exp"] = time.Now().Add(ttl).Unix()

	return token.SignedString(secret)
}

func ParseToken(secret []byte, tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Xác thực thuật toán ký là HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	return token, err
}

// ClaimFromToken đọc userId, username, role từ token đã xác thực
func ClaimFromToken(token *jwt.Token) (model.TokenClaim, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.TokenClaim{}, ErrInvalidClaims
	}
	userID, _ := claims["userId"].(string)
	if userID == "" {
		return model.TokenClaim{}, ErrInvalidClaims
	}
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	return model.TokenClaim{UserId: userID, Username: username, Role: role}, nil
}

// GetTokenClaim lấy claim mà middleware Protected đã lưu vào Locals
func GetTokenClaim(c *fiber.Ctx) (model.TokenClaim, bool) {
	claim, ok := c.Locals("claim").(model.TokenClaim)
	return claim, ok && claim.UserId != ""
}

func IsAdmin(claim model.TokenClaim) bool {
	return claim.Role == constants.ROLE_ADMIN
}

// ScopeFromClaim: admin thấy mọi đơn, user chỉ thấy đơn của mình
func ScopeFromClaim(claim model.TokenClaim) model.Scope {
	if IsAdmin(claim) {
		return model.AdminScope()
	}
	return model.OwnerScope(claim.UserId)
}
