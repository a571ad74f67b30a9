package models

// User roles.
const (
	RoleAdmin    = "admin"
	RoleMerchant = "merchant"
	RoleUser     = "user"
)

// Supported interface languages. The first is the default.
var Languages = []string{"en", "fr", "es", "de"}

// SystemSettings are the platform-wide switches edited from the admin settings screen.
type SystemSettings struct {
	MaintenanceMode     bool   `json:"maintenanceMode"`
	AllowSubmissions    bool   `json:"allowSubmissions"`
	RequireApproval     bool   `json:"requireApproval"`
	MaxDealsPerMerchant int    `json:"maxDealsPerMerchant" validate:"gte=0,lte=1000"`
	DefaultLanguage     string `json:"defaultLanguage" validate:"required,oneof=en fr es de"`
	FeaturedCategory    string `json:"featuredCategory,omitempty" validate:"max=50"`
	SupportEmail        string `json:"supportEmail,omitempty" validate:"omitempty,email"`
}

// DefaultSettings is used until an admin saves settings.
func DefaultSettings() SystemSettings {
	return SystemSettings{
		AllowSubmissions:    true,
		RequireApproval:     true,
		MaxDealsPerMerchant: 50,
		DefaultLanguage:     Languages[0],
	}
}
