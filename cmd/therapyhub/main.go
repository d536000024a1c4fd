// Command therapyhub runs the workshop registration API, its migrations and the
// notification worker.
package main

import (
	"os"
)

// @title TherapyHub Workshops API
// @version 1.0
// @description Workshop listing, registration, payment and administration for a therapy practice.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
