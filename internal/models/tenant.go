package models

import "gorm.io/gorm"

// Tenant represents a renter with an account at the external identity provider
type Tenant struct {
	gorm.Model
	ClerkUserID string `gorm:"uniqueIndex;not null"`
	FirstName   string
	LastName    string
	Email       string
	Phone       string
}

// Landlord represents a property owner
type Landlord struct {
	gorm.Model
	ClerkUserID string `gorm:"uniqueIndex;not null"`
	Name        string
	Email       string
	Phone       string
}
