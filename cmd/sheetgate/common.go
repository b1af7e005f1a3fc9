package main

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/sheetgate/sheetgate/internal/config"
	"github.com/sheetgate/sheetgate/internal/db"
)

func workingDir() (string, error) {
	return os.Getwd()
}

func openStore(workDir string, cfg config.Config) (*sql.DB, func(), error) {
	path := cfg.Store.Path
	if path == "" {
		path = filepath.Join(".sheetgate", "state.db")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, func() {}, err
	}
	storeDB, err := db.Open(path)
	if err != nil {
		return nil, func() {}, err
	}
	return storeDB, func() { _ = storeDB.Close() }, nil
}
