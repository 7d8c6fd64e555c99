package server

import (
	"embed"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//go:embed openapi.yaml
var openapiFS embed.FS

// SetupSwagger serves the OpenAPI document and a Swagger UI that reads it.
func SetupSwagger(r *gin.Engine) {
	r.StaticFileFS("/openapi.yaml", "openapi.yaml", http.FS(openapiFS))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/openapi.yaml")))
}
