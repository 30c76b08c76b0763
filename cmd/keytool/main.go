// Command keytool generates encryption keys and re-encrypts credential
// tokens during offline key rotation.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/ericfisherdev/integrationhub/internal/security"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("keytool", flag.ContinueOnError)
	generate := fs.Bool("generate", false, "print a fresh base64 encryption key")
	rotate := fs.Bool("rotate", false, "re-encrypt a token from -old-key to -new-key")
	oldKey := fs.String("old-key", "", "base64 key the token is currently encrypted with")
	newKey := fs.String("new-key", "", "base64 key to re-encrypt the token with")
	token := fs.String("token", "", "encrypted credential token to rotate")

	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *generate:
		key, err := security.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Println(base64.StdEncoding.EncodeToString(key))
		return nil

	case *rotate:
		if *oldKey == "" || *newKey == "" || *token == "" {
			return fmt.Errorf("-rotate requires -old-key, -new-key, and -token")
		}

		oldRaw, err := base64.StdEncoding.DecodeString(*oldKey)
		if err != nil {
			return fmt.Errorf("decode old key: %w", err)
		}
		newRaw, err := base64.StdEncoding.DecodeString(*newKey)
		if err != nil {
			return fmt.Errorf("decode new key: %w", err)
		}

		rotated, err := security.RotateKey(oldRaw, newRaw, *token)
		if err != nil {
			return err
		}
		fmt.Println(rotated)
		return nil

	default:
		fs.Usage()
		return fmt.Errorf("specify -generate or -rotate")
	}
}
