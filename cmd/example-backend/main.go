// Backend de exemplo para exercitar o gateway localmente: responde aos
// endpoints de análise com latência simulada e identifica o nó na resposta.
package main

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	name := getenvDefault("BACKEND_NAME", "backend")
	port := getenvDefault("BACKEND_PORT", "9001")
	latency := getenvIntDefault("BACKEND_LATENCY_MS", 20)

	router := gin.Default()

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "node": name})
	})

	router.Any("/api/analyze", func(c *gin.Context) {
		simulateWork(latency)
		c.JSON(http.StatusOK, gin.H{"node": name, "result": "analysis complete"})
	})

	router.Any("/api/analyze-image", func(c *gin.Context) {
		simulateWork(latency * 3)
		c.JSON(http.StatusOK, gin.H{"node": name, "result": "image analysis complete"})
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"node":   name,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	addr := fmt.Sprintf(":%s", port)
	log.Printf("example backend %s listening on %s (latency %dms)", name, addr, latency)
	if err := router.Run(addr); err != nil {
		log.Fatalf("backend stopped: %v", err)
	}
}

// simulateWork dorme a latência base mais um jitter de até metade dela.
func simulateWork(baseMs int) {
	if baseMs <= 0 {
		return
	}
	jitter := rand.Intn(baseMs/2 + 1)
	time.Sleep(time.Duration(baseMs+jitter) * time.Millisecond)
}

func getenvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return parsed
}
