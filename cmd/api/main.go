package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/catalog"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/config"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/conversation"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/db"
	internalhttp "github.com/safari123-code/tikzok-auto-recharge-backend/internal/http"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/lock"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/pricing"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/reply"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/secrets"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/settlement"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/store"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/sumup"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/whatsapp"

	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	leases, err := lock.Open(cfg.Lock.Backend, cfg.Lock.RedisURL, pool)
	if err != nil {
		log.Fatalf("lock backend failed: %v", err)
	}

	codec, err := secrets.NewCodec(cfg.Security.DataEncryptionKey)
	if err != nil {
		log.Fatalf("encryption key invalid: %v", err)
	}

	pricingSvc, err := pricing.New(cfg.Pricing.Fees)
	if err != nil {
		log.Fatalf("pricing config invalid: %v", err)
	}

	minAmount, err := decimal.NewFromString(cfg.Orders.MinAmount)
	if err != nil {
		log.Fatalf("orders.min_amount invalid: %v", err)
	}
	maxAmount, err := decimal.NewFromString(cfg.Orders.MaxAmount)
	if err != nil {
		log.Fatalf("orders.max_amount invalid: %v", err)
	}

	providerTimeout := time.Duration(cfg.Poller.ProviderTimeoutSecond) * time.Second

	orders := store.NewOrders(pool)
	convos := store.NewConversations(pool)
	messages := store.NewMessages(pool)

	catalogClient := catalog.NewClient(cfg.Reloadly.BaseURL, cfg.Reloadly.AuthURL,
		cfg.Reloadly.ClientID, cfg.Reloadly.ClientSecret, providerTimeout)
	sumupClient := sumup.NewClient(cfg.SumUp.BaseURL, cfg.SumUp.APIKey, cfg.SumUp.MerchantCode, providerTimeout)
	sender := whatsapp.NewSender(cfg.WhatsApp.BaseURL, cfg.WhatsApp.Token, cfg.WhatsApp.PhoneNumberID, providerTimeout)

	formatter := reply.Formatter{DefaultLang: cfg.Orders.DefaultLang}

	var topup settlement.TopupExecutor = catalogClient
	if cfg.Reloadly.DisableExecution {
		topup = catalog.DisabledExecutor{}
		log.Printf("topup execution disabled")
	}

	reconciler := &settlement.Reconciler{
		Orders:      orders,
		Leases:      leases,
		Codec:       codec,
		Topup:       topup,
		Notifier:    sender,
		Formatter:   formatter,
		Language:    conversationLanguage(convos),
		DefaultLang: cfg.Orders.DefaultLang,
	}

	engine := &conversation.Engine{
		Convos:      convos,
		Orders:      orders,
		Messages:    messages,
		Catalog:     catalogClient,
		Checkouts:   sumupClient,
		Sender:      sender,
		Leases:      leases,
		Encryptor:   codec,
		Pricing:     pricingSvc,
		Format:      formatter,
		DefaultLang: cfg.Orders.DefaultLang,
		MinAmount:   minAmount,
		MaxAmount:   maxAmount,

		AllowedCountries: cfg.Orders.AllowedCountries,
	}

	h := &internalhttp.Handler{
		Engine:      engine,
		Reconciler:  reconciler,
		Orders:      orders,
		VerifyToken: cfg.WhatsApp.VerifyToken,
		AppSecret:   cfg.WhatsApp.AppSecret,
		Production:  cfg.WhatsApp.Production,
	}
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.Printf("api listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}

func conversationLanguage(convos *store.Conversations) func(ctx context.Context, subjectHash string) string {
	return func(ctx context.Context, subjectHash string) string {
		convo, err := convos.Get(ctx, subjectHash)
		if err != nil {
			return ""
		}
		return convo.Language
	}
}
