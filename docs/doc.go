// Package docs provides generated OpenAPI documentation.
//
// SmartMarks API
//
//	@title			SmartMarks API
//	@version		1.0
//	@description	JSON routes of the SmartMarks handwriting grading front-end.
//
//	@contact.name	SmartMarks
//	@contact.url	https://github.com/smartmarks/smartmarks
//
//	@host		localhost:3000
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/smartmarks/serve.go -o ./swagger --parseDependency --parseInternal
