// Command stafftoken mints a staff JWT for local testing of the /v1/staff
// routes.  It signs with JWT_SECRET from the environment or .env.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/hotel-booking/internal/utils"
)

func main() {
	sub := flag.String("sub", "desk", "staff subject")
	role := flag.String("role", "STAFF", "STAFF or ADMIN")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf(".env not loaded: %v", err)
	}
	tok, err := utils.NewStaffToken(os.Getenv("JWT_SECRET"), *sub, *role, *ttl)
	if err != nil {
		log.Fatalf("stafftoken: %v", err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
