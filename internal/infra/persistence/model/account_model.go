package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountModel mirrors the 'accounts' table. IDs are generated by the application (uuid v7).
type AccountModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex:idx_accounts_email;not null"`
	Name      string    `gorm:"type:varchar(100)"`
	Handle    string    `gorm:"type:varchar(150);uniqueIndex:idx_accounts_handle;not null"`
	AvatarURL string    `gorm:"type:text"`
	Role      string    `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Identities []AccountIdentityModel `gorm:"foreignKey:AccountID"`
}

// TableName explicitly sets the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}

// AccountIdentityModel mirrors the 'account_identities' table, one row per linked provider.
// A provider user maps to exactly one account, and an account holds one link per provider.
type AccountIdentityModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_account_identities_account_provider"`
	Provider       string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_account_identities_provider_user;uniqueIndex:idx_account_identities_account_provider"`
	ProviderUserID string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_account_identities_provider_user"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName explicitly sets the table name for GORM.
func (AccountIdentityModel) TableName() string {
	return "account_identities"
}
