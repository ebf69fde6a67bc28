package main

import (
	"fmt"
	"log"

	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
)

// keygen prints a fresh base64 AES-256 key for TELEMED_SECURITY_ENCRYPTION_KEY.
func main() {
	key, err := security.GenerateEncryptionKey()
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}
	fmt.Println(key)
}
