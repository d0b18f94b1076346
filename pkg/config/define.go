/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

const (
	// server
	serverPrefix = "server."
	serverPort   = serverPrefix + "port"

	// health_check
	healthCheckPrefix = "health_check."
	healthCheckEnable = healthCheckPrefix + "enable"

	// db
	dbPrefix               = "db."
	dbName                 = dbPrefix + "name"
	dbUser                 = dbPrefix + "user"
	dbPassword             = dbPrefix + "password"
	dbHost                 = dbPrefix + "host"
	dbPort                 = dbPrefix + "port"
	dbSslMode              = dbPrefix + "ssl_mode"
	dbMaxOpenConns         = dbPrefix + "max_open_conns"
	dbMaxIdleConns         = dbPrefix + "max_idle_conns"
	dbMaxLifetime          = dbPrefix + "max_life_time_second"
	dbMaxIdleTimeSecond    = dbPrefix + "max_idle_time_second"
	dbConnectTimeoutSecond = dbPrefix + "connect_timeout_second"
	dbRequestTimeoutSecond = dbPrefix + "request_timeout_second"

	// kubernetes
	kubernetesPrefix  = "kubernetes."
	clusterProvider   = kubernetesPrefix + "provider"
	kubeConfigPath    = kubernetesPrefix + "kube_config_path"
	containerRegistry = kubernetesPrefix + "container_registry"
	clusterEndpoint   = kubernetesPrefix + "endpoint"
	clusterToken      = kubernetesPrefix + "token"
	clusterInsecure   = kubernetesPrefix + "insecure"

	// messaging
	messagingPrefix        = "messaging."
	messagingEnable        = messagingPrefix + "enable"
	kafkaBootstrapServers  = messagingPrefix + "kafka.bootstrap_servers"
	kafkaTestResultsTopic  = messagingPrefix + "kafka.test_results_topic"
	kafkaWriteTimeoutSecs  = messagingPrefix + "kafka.write_timeout_second"
	kafkaRequiredAcksLocal = messagingPrefix + "kafka.acks_local"

	// storage (s3)
	storagePrefix        = "storage."
	storageEnable        = storagePrefix + "enable"
	storageEndpoint      = storagePrefix + "endpoint"
	storageRegion        = storagePrefix + "region"
	storageBucket        = storagePrefix + "test_results_bucket"
	storageAccessKey     = storagePrefix + "access_key"
	storageSecretKey     = storagePrefix + "secret_key"
	storageTimeoutSecond = storagePrefix + "timeout_second"

	// notifications
	notificationPrefix = "notifications."
	notificationEnable = notificationPrefix + "enable"
	smtpHost           = notificationPrefix + "smtp.host"
	smtpPort           = notificationPrefix + "smtp.port"
	smtpUsername       = notificationPrefix + "smtp.username"
	smtpPassword       = notificationPrefix + "smtp.password"
	smtpFrom           = notificationPrefix + "smtp.from"
	smtpUseTLS         = notificationPrefix + "smtp.use_tls"
)
