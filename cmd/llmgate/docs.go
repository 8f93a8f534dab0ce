package main

// General API documentation for swaggo. Run `swag init -g cmd/llmgate/docs.go`
// to regenerate the docs package.
//
// @title           llmgate API
// @version         1.0
// @description     OpenAI-compatible gateway in front of self-hosted LLM backends.
//
// @contact.name   llmgate maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
