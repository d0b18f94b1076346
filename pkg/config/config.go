/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"github.com/spf13/viper"
)

// SetValue sets a configuration value for the specified key.
func SetValue(key string, value interface{}) {
	viper.Set(key, value)
}

// LoadConfig loads configuration from the specified file path.
func LoadConfig(path string) error {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	return viper.ReadInConfig()
}

func getString(key, defaultValue string) string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetString(key)
}

func getBool(key string, defaultValue bool) bool {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetBool(key)
}

func getInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

// GetServerPort returns the API server port.
func GetServerPort() int {
	return getInt(serverPort, 0)
}

// IsHealthCheckEnabled returns whether health checks are enabled.
func IsHealthCheckEnabled() bool {
	return getBool(healthCheckEnable, true)
}

// GetDBName returns the database name.
func GetDBName() string {
	return getString(dbName, "")
}

// GetDBUser returns the database user.
func GetDBUser() string {
	return getString(dbUser, "")
}

// GetDBPassword returns the database password.
func GetDBPassword() string {
	return getString(dbPassword, "")
}

// GetDBHost returns the database host.
func GetDBHost() string {
	return getString(dbHost, "")
}

// GetDBPort returns the database port.
func GetDBPort() int {
	return getInt(dbPort, 5432)
}

// GetDBSslMode returns the database SSL mode.
func GetDBSslMode() string {
	return getString(dbSslMode, "disable")
}

// GetDBMaxOpenConns returns the maximum number of open database connections.
func GetDBMaxOpenConns() int {
	return getInt(dbMaxOpenConns, 0)
}

// GetDBMaxIdleConns returns the maximum number of idle database connections.
func GetDBMaxIdleConns() int {
	return getInt(dbMaxIdleConns, 0)
}

// GetDBMaxLifetimeSecond returns the maximum connection lifetime in seconds.
func GetDBMaxLifetimeSecond() int {
	return getInt(dbMaxLifetime, 0)
}

// GetDBMaxIdleTimeSecond returns the maximum connection idle time in seconds.
func GetDBMaxIdleTimeSecond() int {
	return getInt(dbMaxIdleTimeSecond, 0)
}

// GetDBConnectTimeoutSecond returns the connection timeout in seconds.
func GetDBConnectTimeoutSecond() int {
	return getInt(dbConnectTimeoutSecond, 10)
}

// GetDBRequestTimeoutSecond returns the per-request timeout in seconds.
func GetDBRequestTimeoutSecond() int {
	return getInt(dbRequestTimeoutSecond, 30)
}

// GetClusterProvider returns the cluster backend provider (aks or openshift).
func GetClusterProvider() string {
	return getString(clusterProvider, "aks")
}

// GetKubeConfigPath returns the path to the kubeconfig file.
func GetKubeConfigPath() string {
	return getString(kubeConfigPath, "")
}

// SetKubeConfigPath overrides the kubeconfig path, used when the path comes
// from the command line instead of the config file.
func SetKubeConfigPath(path string) {
	viper.Set(kubeConfigPath, path)
}

// GetContainerRegistry returns the registry that hosts the runner images.
func GetContainerRegistry() string {
	return getString(containerRegistry, "")
}

// GetClusterEndpoint returns the cluster API endpoint for token-based access.
func GetClusterEndpoint() string {
	return getString(clusterEndpoint, "")
}

// GetClusterToken returns the bearer token for token-based cluster access.
func GetClusterToken() string {
	return getString(clusterToken, "")
}

// IsClusterInsecure returns whether TLS verification is skipped for the cluster.
func IsClusterInsecure() bool {
	return getBool(clusterInsecure, false)
}

// IsMessagingEnabled returns whether the message bus producer is enabled.
func IsMessagingEnabled() bool {
	return getBool(messagingEnable, false)
}

// GetKafkaBootstrapServers returns the Kafka bootstrap server list.
func GetKafkaBootstrapServers() []string {
	return viper.GetStringSlice(kafkaBootstrapServers)
}

// GetKafkaTestResultsTopic returns the topic for test result metadata messages.
func GetKafkaTestResultsTopic() string {
	return getString(kafkaTestResultsTopic, "test-results-metadata")
}

// GetKafkaWriteTimeoutSecond returns the Kafka produce timeout in seconds.
func GetKafkaWriteTimeoutSecond() int {
	return getInt(kafkaWriteTimeoutSecs, 10)
}

// IsKafkaAcksLocal returns whether the producer waits only for the local broker ack.
func IsKafkaAcksLocal() bool {
	return getBool(kafkaRequiredAcksLocal, true)
}

// IsStorageEnabled returns whether artifact storage is enabled.
func IsStorageEnabled() bool {
	return getBool(storageEnable, false)
}

// GetStorageEndpoint returns the object storage endpoint.
func GetStorageEndpoint() string {
	return getString(storageEndpoint, "")
}

// GetStorageRegion returns the object storage region.
func GetStorageRegion() string {
	return getString(storageRegion, "us-east-1")
}

// GetStorageBucket returns the bucket that holds test result artifacts.
func GetStorageBucket() string {
	return getString(storageBucket, "test-results")
}

// GetStorageAccessKey returns the object storage access key.
func GetStorageAccessKey() string {
	return getString(storageAccessKey, "")
}

// GetStorageSecretKey returns the object storage secret key.
func GetStorageSecretKey() string {
	return getString(storageSecretKey, "")
}

// GetStorageTimeoutSecond returns the object storage request timeout in seconds.
func GetStorageTimeoutSecond() int {
	return getInt(storageTimeoutSecond, 180)
}

// IsNotificationEnabled returns whether outbound notifications are enabled.
func IsNotificationEnabled() bool {
	return getBool(notificationEnable, false)
}

// GetSMTPHost returns the SMTP server host.
func GetSMTPHost() string {
	return getString(smtpHost, "")
}

// GetSMTPPort returns the SMTP server port.
func GetSMTPPort() int {
	return getInt(smtpPort, 587)
}

// GetSMTPUsername returns the SMTP username.
func GetSMTPUsername() string {
	return getString(smtpUsername, "")
}

// GetSMTPPassword returns the SMTP password.
func GetSMTPPassword() string {
	return getString(smtpPassword, "")
}

// GetSMTPFrom returns the sender address for notification emails.
func GetSMTPFrom() string {
	return getString(smtpFrom, "")
}

// IsSMTPUseTLS returns whether SMTP uses implicit SSL (port 465) instead of STARTTLS.
func IsSMTPUseTLS() bool {
	return getBool(smtpUseTLS, false)
}
