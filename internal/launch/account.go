// Package launch prepares an instance and spawns the game JVM.
package launch

import (
	"crypto/md5" //nolint:gosec // offline UUIDs are defined as name-based MD5
	"strings"

	"github.com/google/uuid"
	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/state"
)

// AccountType is passed to the game as --userType.
type AccountType string

const (
	AccountLegacy    AccountType = "legacy"
	AccountMojang    AccountType = "mojang"
	AccountMicrosoft AccountType = "msa"
)

// OfflineToken is the access token handed to offline sessions.
const OfflineToken = "0"

// Account identifies the player a launch runs as.
type Account struct {
	Name  string      `json:"name"`
	UUID  string      `json:"uuid"`
	Token string      `json:"-"`
	Type  AccountType `json:"type"`
}

// OfflineAccount builds the account vanilla servers expect for an
// unauthenticated player.
func OfflineAccount(name string) (Account, error) {
	if err := state.ValidatePlayerName(name); err != nil {
		return Account{}, apperr.New(apperr.Config, "launch.account", err)
	}
	return Account{
		Name:  name,
		UUID:  OfflineUUID(name),
		Token: OfflineToken,
		Type:  AccountLegacy,
	}, nil
}

// OfflineUUID is the version 3 UUID of "OfflinePlayer:"+name.
func OfflineUUID(name string) string {
	sum := md5.Sum([]byte("OfflinePlayer:" + name)) //nolint:gosec
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80
	return uuid.UUID(sum).String()
}

func (a Account) userType() string {
	if a.Type == "" {
		return string(AccountLegacy)
	}
	return strings.ToLower(string(a.Type))
}
