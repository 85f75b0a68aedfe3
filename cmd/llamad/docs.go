package main

// General API documentation for swaggo. Regenerate the docs package with
// `swag init -g cmd/llamad/docs.go`.
//
// @title           llamad API
// @version         1.0
// @description     HTTP API for supervising a local llama-server and streaming chat against it.
//
// @contact.name   llamad maintainers
// @contact.url    https://github.com/your-org/llamad
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
