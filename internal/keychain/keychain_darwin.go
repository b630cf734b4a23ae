//go:build darwin

package keychain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	keychain "github.com/keybase/go-keychain"
)

const (
	keychainService = "com.keyrecovery.backup"
	keychainLabel   = "KeyRecovery account backup"
)

func accountFor(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", errors.New("account address is required")
	}
	return address, nil
}

// Save stores the backup text for address. The item stays on this device and
// is readable only while it is unlocked.
func Save(address, secret string) error {
	account, err := accountFor(address)
	if err != nil {
		return err
	}
	data, err := json.Marshal(Entry{Address: account, Secret: secret, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode keychain entry: %w", err)
	}

	item := keychain.NewGenericPassword(keychainService, account, keychainLabel, data, "")
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlockedThisDeviceOnly)

	if err := keychain.AddItem(item); err != nil {
		if err == keychain.ErrorDuplicateItem {
			query := keychain.NewGenericPassword(keychainService, account, "", nil, "")
			update := keychain.NewItem()
			update.SetData(data)
			if err := keychain.UpdateItem(query, update); err != nil {
				return fmt.Errorf("update keychain entry: %w", err)
			}
			return nil
		}
		return fmt.Errorf("add keychain entry: %w", err)
	}
	return nil
}

// Load returns the entry for address, or ErrNotFound.
func Load(address string) (Entry, error) {
	account, err := accountFor(address)
	if err != nil {
		return Entry{}, err
	}
	data, err := keychain.GetGenericPassword(keychainService, account, "", "")
	if err != nil {
		return Entry{}, fmt.Errorf("read keychain entry: %w", err)
	}
	if len(data) == 0 {
		return Entry{}, ErrNotFound
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode keychain entry: %w", err)
	}
	return e, nil
}

// Delete removes the entry for address. A missing entry is not an error.
func Delete(address string) error {
	account, err := accountFor(address)
	if err != nil {
		return err
	}
	query := keychain.NewGenericPassword(keychainService, account, "", nil, "")
	if err := keychain.DeleteItem(query); err != nil && err != keychain.ErrorItemNotFound {
		return fmt.Errorf("remove keychain entry: %w", err)
	}
	return nil
}
