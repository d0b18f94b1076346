/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package cluster

import (
	"context"
	"testing"

	"gotest.tools/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestNamespaceForLob(t *testing.T) {
	cases := []struct {
		prefix, lob, want string
	}{
		{"testexec-", "acme", "testexec-acme"},
		{"testexec-", "ACME", "testexec-acme"},
		{"testexec-", "Acme-Corp", "testexec-acme-corp"},
		{"qa-", "Payments", "qa-payments"},
	}
	for _, tc := range cases {
		assert.Equal(t, NamespaceForLob(tc.prefix, tc.lob), tc.want)
	}
}

func TestEnsureNamespaceExists(t *testing.T) {
	clientSet := fake.NewSimpleClientset()
	p := NewProviderWithClientSet(ProviderAKS, clientSet)
	resolver := NewNamespaceResolver(p, func(context.Context) string { return "testexec-" })

	namespace, err := resolver.EnsureNamespaceExists(context.Background(), "ACME")
	assert.NilError(t, err)
	assert.Equal(t, namespace, "testexec-acme")

	_, err = clientSet.CoreV1().Namespaces().Get(context.Background(), "testexec-acme", metav1.GetOptions{})
	assert.NilError(t, err)

	// Ensuring again is a no-op.
	namespace, err = resolver.EnsureNamespaceExists(context.Background(), "acme")
	assert.NilError(t, err)
	assert.Equal(t, namespace, "testexec-acme")
}
