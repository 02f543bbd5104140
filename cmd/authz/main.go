// @title        Access Control API
// @version      1.0
// @description  Multi-tenant authentication and role-based access control.
// @BasePath     /
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import "github.com/99minutos/access-control/cmd/authz/cmd"

func main() {
	cmd.Execute()
}
