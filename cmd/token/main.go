// Command token mints access tokens for local testing. Sign-in happens
// outside the back office, so this is the only way to get one in development.
package main

import (
	"flag"
	"fmt"
	"log"

	"municipal/internal/shared/config"
	"municipal/internal/shared/middleware"
	"municipal/internal/users"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	username := flag.String("user", "admin", "username carried by the token")
	role := flag.String("role", string(users.RoleAdmin), "admin, editor or consultant")
	ttl := flag.Duration("ttl", cfg.JWT.JWTExpiresIn, "token lifetime")
	flag.Parse()

	principal := users.Principal{Username: *username, Role: users.ParseRole(*role)}
	token, err := middleware.IssueAccessToken(cfg.JWT.Secret, principal, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(token)
}
