package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/CMU-DEMP01/Support-Assistant/internal/api"
	"github.com/CMU-DEMP01/Support-Assistant/internal/config"
	"github.com/CMU-DEMP01/Support-Assistant/internal/core"
	"github.com/CMU-DEMP01/Support-Assistant/internal/rules"
	"github.com/CMU-DEMP01/Support-Assistant/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flags for one-shot ingestion
	ingestURLs := flag.String("ingest-urls", "", "Comma-separated list of URLs to ingest, then exit")
	ingestPDF := flag.String("ingest-pdf", "", "Path to a PDF file to ingest, then exit")
	flag.Parse()

	// Initialize vector store
	vectorStore, err := store.NewQdrantStore(config.AppConfig.QdrantURL, config.AppConfig.QdrantAPIKey)
	if err != nil {
		log.Fatalf("Failed to initialize vector store: %v", err)
	}

	// Initialize LLM service
	llmService := core.NewLLMService()
	defer llmService.Close()

	// Initialize RAG service
	ragService := core.NewRAGService(llmService, vectorStore)

	// Handle one-shot ingestion if a flag is set
	if *ingestURLs != "" || *ingestPDF != "" {
		runIngestion(ragService, *ingestURLs, *ingestPDF)
		llmService.Close()
		os.Exit(0)
	}

	// Initialize rule matcher and answer assembler
	kb := rules.DefaultKnowledgeBase()
	matcher := rules.NewMatcher(kb)
	answerService := core.NewAnswerService(kb, llmService)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(matcher, ragService, ragService, answerService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: answers stream for as long as the model generates
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}

func runIngestion(rag *core.RAGService, urlList, pdfPath string) {
	ctx := context.Background()

	if urlList != "" {
		urls := strings.Split(urlList, ",")
		added, err := rag.IngestFromURLs(ctx, urls)
		if err != nil {
			log.Fatalf("URL ingestion failed: %v", err)
		}
		log.Printf("URL ingestion complete. Added %d chunks.", added)
	}

	if pdfPath != "" {
		data, err := os.ReadFile(pdfPath)
		if err != nil {
			log.Fatalf("Failed to read PDF file: %v", err)
		}
		added, err := rag.IngestPDF(ctx, data, filepath.Base(pdfPath))
		if err != nil {
			log.Fatalf("PDF ingestion failed: %v", err)
		}
		log.Printf("PDF ingestion complete. Added %d chunks.", added)
	}
}
