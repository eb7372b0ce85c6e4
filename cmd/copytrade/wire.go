package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/copytrade/internal/accounts"
	"github.com/betbot/copytrade/internal/exchange/mexc"
	"github.com/betbot/copytrade/internal/exchange/paper"
	"github.com/betbot/copytrade/internal/ports"
	"github.com/betbot/copytrade/internal/strategy"
	"github.com/betbot/copytrade/pkg/config"
	"github.com/betbot/copytrade/pkg/ratelimit"
	"github.com/betbot/copytrade/pkg/secretstore"
)

// fillCredentials 配置与环境变量中缺失的凭证从加密存储补齐
func fillCredentials(cfg *config.Config, ss *secretstore.Store) error {
	if ss == nil {
		return nil
	}
	if !cfg.Primary.HasCredentials() {
		key, secret, found, err := ss.LoadCredentials(cfg.Primary.Name, true)
		if err != nil {
			return fmt.Errorf("读取主账户凭证失败: %w", err)
		}
		if found {
			cfg.Primary.APIKey, cfg.Primary.APISecret = key, secret
			logrus.Infof("🔐 [凭证] 主账户 %s 凭证来自 secret store", cfg.Primary.Name)
		}
	}
	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		if acc.HasCredentials() {
			continue
		}
		key, secret, found, err := ss.LoadCredentials(acc.Name, false)
		if err != nil {
			return fmt.Errorf("读取从账户 %s 凭证失败: %w", acc.Name, err)
		}
		if found {
			acc.APIKey, acc.APISecret = key, secret
			logrus.Infof("🔐 [凭证] 从账户 %s 凭证来自 secret store", acc.Name)
		}
	}
	return nil
}

// newExchangeClient 每个 API key 一套独立的限流器
func newExchangeClient(cfg *config.Config, acc config.AccountConfig) *mexc.Client {
	return mexc.New(mexc.Config{
		Name:       acc.Name,
		BaseURL:    cfg.Exchange.BaseURL,
		APIKey:     acc.APIKey,
		APISecret:  acc.APISecret,
		Timeout:    time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
		RetryCount: cfg.Exchange.RetryCount,
		OpenType:   cfg.Exchange.OpenType,
		Leverage:   cfg.Exchange.Leverage,
		Limiter:    ratelimit.NewManager(),
	})
}

func buildRegistry(cfg *config.Config) (*accounts.Registry, error) {
	list := make([]accounts.Account, 0, len(cfg.Accounts))
	for _, acc := range cfg.Accounts {
		var client ports.ExchangeClient
		if cfg.DryRun {
			client = paper.New(acc.Name)
		} else {
			client = newExchangeClient(cfg, acc)
		}
		list = append(list, accounts.Account{
			Name:        acc.Name,
			Credentials: accounts.Credentials{APIKey: acc.APIKey, APISecret: acc.APISecret},
			Client:      client,
		})
	}
	return accounts.NewRegistry(list)
}

func buildStrategy(cfg *config.Config) (strategy.Strategy, error) {
	return strategy.New(cfg.Strategy.Name, strategy.Params{
		TraderID:        cfg.Strategy.TraderID,
		MinNotional:     decimal.NewFromFloat(cfg.Strategy.MinNotional),
		AllowedSymbols:  cfg.Strategy.AllowedSymbols,
		ExcludedSymbols: cfg.Strategy.ExcludedSymbols,
	})
}
