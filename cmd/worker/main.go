package main

import (
	"context"
	"log"
	"time"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/catalog"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/config"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/db"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/lock"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/reply"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/secrets"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/settlement"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/store"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/sumup"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/whatsapp"
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

	providerTimeout := time.Duration(cfg.Poller.ProviderTimeoutSecond) * time.Second

	orders := store.NewOrders(pool)
	convos := store.NewConversations(pool)

	catalogClient := catalog.NewClient(cfg.Reloadly.BaseURL, cfg.Reloadly.AuthURL,
		cfg.Reloadly.ClientID, cfg.Reloadly.ClientSecret, providerTimeout)
	sumupClient := sumup.NewClient(cfg.SumUp.BaseURL, cfg.SumUp.APIKey, cfg.SumUp.MerchantCode, providerTimeout)
	sender := whatsapp.NewSender(cfg.WhatsApp.BaseURL, cfg.WhatsApp.Token, cfg.WhatsApp.PhoneNumberID, providerTimeout)

	var topup settlement.TopupExecutor = catalogClient
	if cfg.Reloadly.DisableExecution {
		topup = catalog.DisabledExecutor{}
		log.Printf("topup execution disabled")
	}

	reconciler := &settlement.Reconciler{
		Orders:    orders,
		Leases:    leases,
		Codec:     codec,
		Topup:     topup,
		Notifier:  sender,
		Formatter: reply.Formatter{DefaultLang: cfg.Orders.DefaultLang},
		Language: func(ctx context.Context, subjectHash string) string {
			convo, err := convos.Get(ctx, subjectHash)
			if err != nil {
				return ""
			}
			return convo.Language
		},
		DefaultLang: cfg.Orders.DefaultLang,
	}

	poller := &settlement.Poller{
		Orders:          orders,
		Checkouts:       sumupClient,
		Reconciler:      reconciler,
		Interval:        time.Duration(cfg.Poller.IntervalSeconds) * time.Second,
		ProviderTimeout: providerTimeout,
	}

	log.Printf("settlement poller started (interval=%ds)", cfg.Poller.IntervalSeconds)
	poller.Run(ctx)
}
