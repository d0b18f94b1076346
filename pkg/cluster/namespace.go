/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package cluster

import (
	"context"
	"strings"

	"k8s.io/klog/v2"
)

// PrefixFunc yields the current lob namespace prefix. Implementations must
// not block beyond a cached policy read.
type PrefixFunc func(ctx context.Context) string

// NamespaceResolver maps lobs to cluster namespaces.
type NamespaceResolver struct {
	provider Interface
	prefix   PrefixFunc
}

// NewNamespaceResolver creates a resolver over the cluster backend. The
// prefix function typically reads the cached admin policy.
func NewNamespaceResolver(provider Interface, prefix PrefixFunc) *NamespaceResolver {
	return &NamespaceResolver{provider: provider, prefix: prefix}
}

// NamespaceForLob derives the namespace name. The mapping is pure in the
// prefix and the lob id; the lob id is always lowercased.
func NamespaceForLob(prefix, lobId string) string {
	return prefix + strings.ToLower(lobId)
}

// GetNamespaceForLob resolves the namespace for a lob under the current
// policy prefix.
func (r *NamespaceResolver) GetNamespaceForLob(ctx context.Context, lobId string) string {
	return NamespaceForLob(r.prefix(ctx), lobId)
}

// EnsureNamespaceExists resolves the lob's namespace and creates it if
// missing, returning the resolved name.
func (r *NamespaceResolver) EnsureNamespaceExists(ctx context.Context, lobId string) (string, error) {
	namespace := r.GetNamespaceForLob(ctx, lobId)
	if err := r.provider.CreateNamespaceIfNotExists(ctx, namespace); err != nil {
		klog.ErrorS(err, "failed to ensure namespace", "namespace", namespace, "lob", lobId)
		return "", err
	}
	return namespace, nil
}
