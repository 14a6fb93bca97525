package endpoints

import (
	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/internal/backend"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// Manager is the managed backend container, nil when the backend runs elsewhere.
	Manager *backend.DockerManager
	// SwaggerSpecPath locates the generated swagger.json.
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{Manager: cfg.Manager},

		// Marketing and legal pages
		&HomeEndpoint{},
		&FeaturesEndpoint{},
		&LegalEndpoint{Slug: "terms-of-service", TitleKey: "legal.terms"},
		&LegalEndpoint{Slug: "privacy-policy", TitleKey: "legal.privacy"},
		&LegalEndpoint{Slug: "cookie-policy", TitleKey: "legal.cookies"},

		// Auth
		&LoginPageEndpoint{},
		&LoginEndpoint{},
		&LogoutEndpoint{},
		&APILoginEndpoint{},

		// Grading
		&GradePageEndpoint{},
		&GradeEndpoint{},
		&ResultsPageEndpoint{},
		&RetryEndpoint{},
		&ExportPDFEndpoint{},
		&PDFResultEndpoint{},
		&EmailEndpoint{},
		&PDFFileEndpoint{},
		&ImageEndpoint{},
		&APIResultsEndpoint{},
		&APIRetryEndpoint{},

		// Text improvements
		&ImprovementsPageEndpoint{},
		&ImprovementsEndpoint{},
		&ImprovementsPDFEndpoint{},
		&APIImprovementsEndpoint{},

		// Preferences
		&ThemeEndpoint{},
		&LanguageEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},

		// Static files and the 404 catch-all
		&StaticEndpoint{},
		&NotFoundEndpoint{},
	}
}
