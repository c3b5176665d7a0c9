// cmd/server/main.go
//
// Attendance server: HTTP API plus the live location feed. All runtime
// configuration comes from the environment (optionally via .env).
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"fieldtrack_backend/internal/routes"
	"fieldtrack_backend/internal/storage"
)

func listenAddr() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return ":" + port
}

func main() {
	_ = godotenv.Load()

	db := storage.OpenDB()
	r := routes.NewRouter(db)

	addr := listenAddr()
	log.Printf("fieldtrack server listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatal(err)
	}
}
