package models

//go:generate go run ../../tools/gen_models_registry.go .

// AllModels returns pointers to every registered model in dependency order,
// ready to be passed to AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Landlord{},
		&Tenant{},
		&Hostel{},
		&Room{},
		&Booking{},
		&Payment{},
	}
}
