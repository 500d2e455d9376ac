package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dharmendrakumar4525/avidus-askdb/internal/routing"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/catalog"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/ports"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/infrastructure/persistence"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/infrastructure/translator"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/services"
)

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

type HandlerOptions struct {
	Tenants    map[string]Tenant
	Directory  ports.IdentityDirectory
	Store      ports.DocumentFinder
	Translator ports.Translator
	Catalog    *catalog.Catalog
	Policies   *catalog.PolicyTable
	Authorizer authorizer
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	allowlistPath := os.Getenv("ALLOWLIST_PATH")
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}

	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	cat := opts.Catalog
	if cat == nil {
		cat, err = catalog.LoadCatalogFromEnv()
		if err != nil {
			return nil, err
		}
	}

	policies := opts.Policies
	if policies == nil {
		policies, err = catalog.LoadRolesFromEnv()
		if err != nil {
			return nil, err
		}
	}

	tenants := opts.Tenants
	if tenants == nil {
		tenants, err = loadTenants()
		if err != nil {
			return nil, err
		}
	}

	auth := opts.Authorizer
	if auth == nil {
		auth, err = loadAuthorizer()
		if err != nil {
			return nil, err
		}
	}

	directory := opts.Directory
	if directory == nil {
		pool, err := pgxpool.New(context.Background(), dbDSNFromEnv())
		if err != nil {
			return nil, err
		}
		directory = persistence.NewPGIdentityDirectory(pool)
	}

	store := opts.Store
	if store == nil {
		client, err := mongo.Connect(context.Background(), mongooptions.Client().ApplyURI(mongoURLFromEnv()))
		if err != nil {
			return nil, err
		}
		store = persistence.NewMongoStore(client.Database(mongoDBFromEnv()))
	}

	intents := opts.Translator
	if intents == nil {
		intents, err = translator.NewChatTranslatorFromEnv()
		if err != nil {
			return nil, err
		}
	}

	guard := services.NewGuard(cat, policies)
	executor := services.NewExecutor(store, cat)
	ask := services.NewAskService(guard, intents, executor)
	conversations := newConversationService(ask)

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	router.Handle(routing.RouteClassPublicAPI, http.MethodPost, "/api/askdb/ask", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAskAPI(w, r, ask)
	}))
	router.Handle(routing.RouteClassPublicAPI, http.MethodGet, "/api/askdb/catalog", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCatalogAPI(w, r, ask)
	}))
	router.Handle(routing.RouteClassPublicAPI, http.MethodPost, "/api/askdb/conversations", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleConversationsAPI(w, r, conversations)
	}))

	entrypoint := http.NewServeMux()
	entrypoint.Handle("/api/askdb/conversations/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := extractConversationTurnsPathConversationID(r.URL.Path); ok {
			handleConversationTurnsAPI(w, r, conversations)
			return
		}
		if _, ok := extractConversationIDFromPath(r.URL.Path); ok {
			handleConversationDetailAPI(w, r, conversations)
			return
		}
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusNotFound, "not_found", "not found")
	}))
	entrypoint.Handle("/", router)

	guarded := withTenantAndCaller(classifier, tenants, directory, withAuthz(classifier, auth, policies, entrypoint))

	mux := http.NewServeMux()
	mux.Handle("/", guarded)

	return mux, nil
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("server: failed to build handler: " + err.Error()))
	}
	return h
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}
