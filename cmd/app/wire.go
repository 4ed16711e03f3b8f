//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yanqian/bank-support/internal/bootstrap"
	"github.com/yanqian/bank-support/internal/domain/knowledge"
	"github.com/yanqian/bank-support/internal/domain/support"
	"github.com/yanqian/bank-support/internal/infra/config"
	httpiface "github.com/yanqian/bank-support/internal/interface/http"
	"github.com/yanqian/bank-support/pkg/logger"
	"github.com/yanqian/bank-support/pkg/metrics"
)

var knowledgeSet = wire.NewSet(
	config.Load,
	logger.New,
	provideRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	wire.Bind(new(prometheus.Gatherer), new(*prometheus.Registry)),
	metrics.New,
	provideChatGPTClient,
	provideEmbedder,
	provideKnowledgeIndex,
	provideStore,
	provideGateConfig,
	wire.Bind(new(knowledge.Querier), new(*knowledge.Store)),
	knowledge.NewGate,
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		knowledgeSet,
		provideLLM,
		provideSessions,
		provideSupportRepository,
		provideRatingArchive,
		provideSupportConfig,
		provideSupportDependencies,
		support.NewService,
		provideHandler,
		httpiface.NewRouter,
		provideCorpusWatcher,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}

func initializeKnowledge() (*knowledgeRuntime, func(), error) {
	wire.Build(
		knowledgeSet,
		newKnowledgeRuntime,
	)
	return nil, nil, nil
}
