package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"plan-chat/auth"

	"github.com/joho/godotenv"
)

// tokengen prints a gateway token, handy to feed the chat client or curl.
func main() {
	_ = godotenv.Load()

	secret := flag.String("secret", os.Getenv("AUTH_SECRET"), "HMAC secret shared with the gateway")
	issuer := flag.String("issuer", envOr("AUTH_ISSUER", "plan-chat"), "Token issuer")
	user := flag.String("user", "", "User id carried by the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *user == "" {
		log.Fatal("-user is required")
	}
	tokens, err := auth.NewTokenIssuer(*secret, *issuer)
	if err != nil {
		log.Fatal(err)
	}
	token, err := tokens.GenerateToken(*user, *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
