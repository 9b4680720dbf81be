package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/Hussein-Mazeh/SecureVault/internal/config"
	"github.com/Hussein-Mazeh/SecureVault/internal/logging"
	"github.com/Hussein-Mazeh/SecureVault/internal/service"
	"github.com/Hussein-Mazeh/SecureVault/krypto"
)

func main() {
	dir := flag.String("dir", "", "vault directory (default ~/.securevault)")
	kdf := flag.String("kdf", "", "key derivation for new master passwords (sha256, argon2id)")
	cipher := flag.String("cipher", "", "credential cipher (aes-256-gcm, xchacha20-poly1305)")
	flag.Parse()

	cfg, err := config.Load(nil, "")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *dir != "" {
		cfg.Dir = *dir
	}
	if *kdf != "" {
		cfg.KDF = *kdf
	}
	if *cipher != "" {
		if _, err := krypto.ParseSuite(*cipher); err != nil {
			log.Fatalf("parse cipher: %v", err)
		}
		cfg.Cipher = *cipher
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		log.Fatalf("configure logging: %v", err)
	}

	wrote, err := service.Provision(context.Background(), cfg, logger.With("cmd", "initvault"))
	if err != nil {
		log.Fatalf("initialize vault: %v", err)
	}
	if wrote {
		log.Printf("vault initialized at %s", cfg.Dir)
	} else {
		log.Printf("vault already initialized at %s", cfg.Dir)
	}
}
