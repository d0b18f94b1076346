/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package cluster

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	defaultQPS   = 50
	defaultBurst = 100
)

// NewClientSetInCluster builds a clientset from the pod's service account.
func NewClientSetInCluster() (kubernetes.Interface, *rest.Config, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, nil, err
	}
	restCfg.QPS = defaultQPS
	restCfg.Burst = defaultBurst
	cli, err := kubernetes.NewForConfig(restCfg)
	return cli, restCfg, err
}

// NewClientSetFromKubeConfig builds a clientset from a kubeconfig file.
func NewClientSetFromKubeConfig(path string) (kubernetes.Interface, *rest.Config, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("kubeconfig path is empty")
	}
	restCfg, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, nil, err
	}
	restCfg.QPS = defaultQPS
	restCfg.Burst = defaultBurst
	cli, err := kubernetes.NewForConfig(restCfg)
	return cli, restCfg, err
}

// NewClientSetWithToken builds a clientset against an API endpoint with a
// bearer token, used for clusters reached from outside.
func NewClientSetWithToken(endpoint, token string, insecure bool) (kubernetes.Interface, *rest.Config, error) {
	if endpoint == "" || token == "" {
		return nil, nil, fmt.Errorf("invalid input")
	}
	restCfg := &rest.Config{
		Host:        endpoint,
		BearerToken: token,
		TLSClientConfig: rest.TLSClientConfig{
			Insecure: insecure,
		},
		QPS:   defaultQPS,
		Burst: defaultBurst,
	}
	cli, err := kubernetes.NewForConfig(restCfg)
	return cli, restCfg, err
}
