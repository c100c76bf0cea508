package main

// General API documentation for swaggo. Run swag init to generate docs.
//
// @title           routerd operational API
// @version         1.0
// @description     Health, statistics and prompt-log endpoints for the backend router.
//
// @BasePath  /
//
// @schemes http
