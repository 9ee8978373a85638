package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Identity is the local participant: an opaque uid from anonymous sign-in and
// the display name chosen at setup. It is loaded once at startup and passed
// into the session as an immutable value; nothing mutates it afterwards.
type Identity struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

var ErrNoIdentity = errors.New("no saved identity")

func identityPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "faciliroom", "identity.json"), nil
}

// LoadIdentity reads the identity persisted by a previous run.
func LoadIdentity() (Identity, error) {
	path, err := identityPath()
	if err != nil {
		return Identity{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Identity{}, ErrNoIdentity
		}
		return Identity{}, err
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, err
	}
	if id.UID == "" || id.Name == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

// SaveIdentity persists the identity for later runs.
func SaveIdentity(id Identity) error {
	path, err := identityPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
