package models

// All lists every persisted model, in dependency order, for AutoMigrate in
// tests and local sqlite runs.
func All() []any {
	return []any{
		&User{},
		&Partner{},
		&FavoritePartner{},
		&Subscription{},
		&Privilege{},
		&FlashOffer{},
		&Booking{},
		&PrivilegeActivation{},
		&MaintenanceRun{},
	}
}
