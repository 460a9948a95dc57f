package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"marketchat/internal/adapter/api"
	"marketchat/internal/adapter/api/handler"
	apimiddleware "marketchat/internal/adapter/api/middleware"
	"marketchat/internal/adapter/api/router"
	"marketchat/internal/adapter/repository"
	"marketchat/internal/domain/service"
	"marketchat/internal/infrastructure/firebase"
	"marketchat/internal/infrastructure/storage"
	"marketchat/internal/infrastructure/websocket"
	"marketchat/internal/usecase"
	"marketchat/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opt option.ClientOption
	serviceAccountPath := ""

	// Credentials come from an env var in production and a file locally.
	serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON")
	if serviceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(serviceAccountJSON))
	} else {
		serviceAccountPath = os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
		if serviceAccountPath == "" {
			log.Fatalf("FIREBASE_SERVICE_ACCOUNT_JSON or FIREBASE_SERVICE_ACCOUNT_PATH must be set")
		}

		if _, err := os.Stat(serviceAccountPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", serviceAccountPath)
		}

		log.Printf("Using Firebase service account from file: %s", serviceAccountPath)
		opt = option.WithCredentialsFile(serviceAccountPath)
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, serviceAccountPath)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}
	defer storageClient.Close()

	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	productRepo := repository.NewFirestoreProductRepository(firestoreClient)
	fileMetadataRepo := repository.NewFirestoreFileMetadataRepository(firestoreClient)
	chatRepo := repository.NewFirestoreChatRepository(firestoreClient)

	firebaseAuthClient := firebase.NewFirebaseAuthClient(authClient)

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	contentFilter := service.NewContentFilterService()

	chatUseCase := usecase.NewChatUseCase(chatRepo, userRepo, productRepo, contentFilter, wsManager)
	wsManager.SetEventHandler(chatUseCase)

	fileUseCase := usecase.NewFileUseCase(storageClient, fileMetadataRepo)

	handler.SetupHealthHandler(firebaseAuthClient)
	handler.SetupFileHandler(fileUseCase)
	handler.SetupDevTokenHandler(firebaseAuthClient, cfg)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware, err := apimiddleware.NewAuthMiddleware(authClient, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize auth middleware: %v", err)
	}
	rateLimitMiddleware := apimiddleware.NewRateLimitMiddleware()

	chatHandler := handler.NewChatHandler(chatUseCase)
	wsHandler := handler.NewWebSocketHandler(wsManager, authMiddleware)

	router.Setup(e, authMiddleware, rateLimitMiddleware)
	router.SetupDevRouter(e, cfg.Environment)
	router.SetupChatRouter(e, chatHandler, authMiddleware)
	router.SetupWebSocketRouter(e, wsHandler)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
