/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package cluster

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/klog/v2"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	commonconfig "github.com/AMD-AIG-AIMA/testexec/pkg/config"
	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
)

const (
	ProviderAKS       = "aks"
	ProviderOpenShift = "openshift"

	// jobNameLabel is the label the job controller puts on runner pods.
	jobNameLabel = "job-name"

	runnerContainerName = "test-runner"
	runnerCommand       = "/app/run-tests.sh"

	// NoPodsFoundMessage is returned by GetJobLogs when the job has no pods.
	NoPodsFoundMessage = "no pods found for job"
)

// TestJobSpec describes the one-shot workload a provider creates for a
// submission.
type TestJobSpec struct {
	JobName        string
	Namespace      string
	Image          string
	RepoUrl        string
	TimeoutMinutes int
	Limits         v1.ContainerLimits
	EnvVars        map[string]string
}

// Interface is the capability set every cluster backend exposes.
type Interface interface {
	Name() string
	CreateTestJob(ctx context.Context, spec *TestJobSpec) (string, error)
	GetJob(ctx context.Context, jobName, namespace string) (*batchv1.Job, error)
	IsJobCompleted(ctx context.Context, jobName, namespace string) (bool, error)
	GetJobLogs(ctx context.Context, jobName, namespace string) (string, error)
	DeleteJob(ctx context.Context, jobName, namespace string) error
	CreateNamespaceIfNotExists(ctx context.Context, namespace string) error
	ListNamespaces(ctx context.Context, prefix string) ([]corev1.Namespace, error)
	ListPods(ctx context.Context, namespace, labelSelector string) ([]corev1.Pod, error)
	ListJobs(ctx context.Context, namespace, labelSelector string) ([]batchv1.Job, error)
	ListNodes(ctx context.Context) ([]corev1.Node, error)
	CleanupCompletedJobs(ctx context.Context, namespace string, olderThan time.Duration) (int, error)
	Ping(ctx context.Context) error
}

// provider implements Interface over a typed clientset. The AKS and
// OpenShift backends differ only in how the clientset is constructed.
type provider struct {
	name      string
	clientSet kubernetes.Interface
}

// NewProvider builds the configured backend. The AKS backend connects via
// kubeconfig or the in-cluster service account; the OpenShift backend
// connects via endpoint and bearer token.
func NewProvider() (Interface, error) {
	name := commonconfig.GetClusterProvider()
	switch name {
	case ProviderOpenShift:
		clientSet, _, err := NewClientSetWithToken(
			commonconfig.GetClusterEndpoint(),
			commonconfig.GetClusterToken(),
			commonconfig.IsClusterInsecure())
		if err != nil {
			return nil, err
		}
		return NewProviderWithClientSet(name, clientSet), nil
	case ProviderAKS:
		var clientSet kubernetes.Interface
		var err error
		if path := commonconfig.GetKubeConfigPath(); path != "" {
			clientSet, _, err = NewClientSetFromKubeConfig(path)
		} else {
			clientSet, _, err = NewClientSetInCluster()
		}
		if err != nil {
			return nil, err
		}
		return NewProviderWithClientSet(name, clientSet), nil
	default:
		return nil, fmt.Errorf("unknown cluster provider %q", name)
	}
}

// NewProviderWithClientSet wraps an existing clientset, used by tests.
func NewProviderWithClientSet(name string, clientSet kubernetes.Interface) Interface {
	return &provider{name: name, clientSet: clientSet}
}

func (p *provider) Name() string {
	return p.name
}

// CreateTestJob creates a one-shot job whose single container clones the
// repository and runs the suite. The job carries its own deadline; pods are
// never restarted, so a runner failure is terminal.
func (p *provider) CreateTestJob(ctx context.Context, spec *TestJobSpec) (string, error) {
	if spec == nil || spec.JobName == "" || spec.Namespace == "" || spec.Image == "" {
		return "", commonerrors.NewBadRequest("invalid job spec")
	}
	env := []corev1.EnvVar{{Name: "REPO_URL", Value: spec.RepoUrl}}
	for name, value := range spec.EnvVars {
		if name == "REPO_URL" {
			continue
		}
		env = append(env, corev1.EnvVar{Name: name, Value: value})
	}

	activeDeadline := int64(spec.TimeoutMinutes) * 60
	backoffLimit := int32(0)
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.JobName,
			Namespace: spec.Namespace,
			Labels: map[string]string{
				"app": "testexec-runner",
			},
		},
		Spec: batchv1.JobSpec{
			ActiveDeadlineSeconds: &activeDeadline,
			BackoffLimit:          &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						"app": "testexec-runner",
					},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:      runnerContainerName,
						Image:     spec.Image,
						Command:   []string{"/bin/sh", "-c", runnerCommand},
						Env:       env,
						Resources: buildResourceRequirements(spec.Limits),
					}},
				},
			},
		},
	}

	created, err := p.clientSet.BatchV1().Jobs(spec.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		klog.ErrorS(err, "failed to create test job", "name", spec.JobName, "namespace", spec.Namespace)
		return "", err
	}
	klog.Infof("created test job %s/%s with deadline %ds", spec.Namespace, created.Name, activeDeadline)
	return created.Name, nil
}

// GetJob retrieves a job by name.
func (p *provider) GetJob(ctx context.Context, jobName, namespace string) (*batchv1.Job, error) {
	return p.clientSet.BatchV1().Jobs(namespace).Get(ctx, jobName, metav1.GetOptions{})
}

// IsJobCompleted reports whether the job reached a terminal state. A job is
// terminal once the cluster reports at least one succeeded or one failed pod.
func (p *provider) IsJobCompleted(ctx context.Context, jobName, namespace string) (bool, error) {
	job, err := p.GetJob(ctx, jobName, namespace)
	if err != nil {
		return false, err
	}
	return job.Status.Succeeded >= 1 || job.Status.Failed >= 1, nil
}

// GetJobLogs returns the full log stream of the job's first pod. A job with
// no pods yields a sentinel message rather than an error.
func (p *provider) GetJobLogs(ctx context.Context, jobName, namespace string) (string, error) {
	pods, err := p.ListPods(ctx, namespace, fmt.Sprintf("%s=%s", jobNameLabel, jobName))
	if err != nil {
		return "", err
	}
	if len(pods) == 0 {
		return fmt.Sprintf("%s %s", NoPodsFoundMessage, jobName), nil
	}
	req := p.clientSet.CoreV1().Pods(namespace).GetLogs(pods[0].Name, &corev1.PodLogOptions{})
	stream, err := req.Stream(ctx)
	if err != nil {
		klog.ErrorS(err, "failed to stream pod logs", "pod", pods[0].Name, "namespace", namespace)
		return "", err
	}
	defer stream.Close()
	data, err := io.ReadAll(stream)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeleteJob removes a job and cascades to its pods in the background.
func (p *provider) DeleteJob(ctx context.Context, jobName, namespace string) error {
	propagation := metav1.DeletePropagationBackground
	err := p.clientSet.BatchV1().Jobs(namespace).Delete(ctx, jobName, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	if err != nil {
		klog.ErrorS(err, "failed to delete job", "name", jobName, "namespace", namespace)
	}
	return err
}

// CreateNamespaceIfNotExists creates the namespace, treating AlreadyExists
// as success so concurrent submissions race safely.
func (p *provider) CreateNamespaceIfNotExists(ctx context.Context, namespace string) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: namespace},
	}
	_, err := p.clientSet.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if commonerrors.IsAlreadyExist(err) {
		return nil
	}
	if err != nil {
		klog.ErrorS(err, "failed to create namespace", "namespace", namespace)
	}
	return err
}

// ListNamespaces lists namespaces, optionally filtered by name prefix.
func (p *provider) ListNamespaces(ctx context.Context, prefix string) ([]corev1.Namespace, error) {
	list, err := p.clientSet.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		return list.Items, nil
	}
	var matched []corev1.Namespace
	for _, ns := range list.Items {
		if strings.HasPrefix(ns.Name, prefix) {
			matched = append(matched, ns)
		}
	}
	return matched, nil
}

// ListPods lists pods in a namespace, optionally filtered by label selector.
func (p *provider) ListPods(ctx context.Context, namespace, labelSelector string) ([]corev1.Pod, error) {
	list, err := p.clientSet.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// ListJobs lists jobs in a namespace, optionally filtered by label selector.
func (p *provider) ListJobs(ctx context.Context, namespace, labelSelector string) ([]batchv1.Job, error) {
	list, err := p.clientSet.BatchV1().Jobs(namespace).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// ListNodes lists every node in the cluster.
func (p *provider) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := p.clientSet.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// CleanupCompletedJobs deletes terminal jobs whose completion is older than
// the retention window and returns how many were removed.
func (p *provider) CleanupCompletedJobs(ctx context.Context, namespace string, olderThan time.Duration) (int, error) {
	jobs, err := p.ListJobs(ctx, namespace, "")
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	deleted := 0
	for i := range jobs {
		job := &jobs[i]
		if job.Status.Succeeded < 1 && job.Status.Failed < 1 {
			continue
		}
		finished := job.CreationTimestamp.Time
		if job.Status.CompletionTime != nil {
			finished = job.Status.CompletionTime.Time
		}
		if finished.After(cutoff) {
			continue
		}
		if err := p.DeleteJob(ctx, job.Name, namespace); err != nil {
			klog.ErrorS(err, "failed to clean up job", "name", job.Name, "namespace", namespace)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Ping verifies the API server is reachable, used by the health endpoint.
func (p *provider) Ping(ctx context.Context) error {
	_, err := p.clientSet.Discovery().ServerVersion()
	if err != nil {
		return commonerrors.NewClusterUnavailable(fmt.Sprintf("cluster unreachable: %v", err))
	}
	return err
}

// buildResourceRequirements translates the policy limit strings to resource
// requirements. Unparseable entries are skipped with a log line so a bad
// policy value degrades to cluster defaults instead of blocking submissions.
func buildResourceRequirements(limits v1.ContainerLimits) corev1.ResourceRequirements {
	req := corev1.ResourceRequirements{
		Limits:   corev1.ResourceList{},
		Requests: corev1.ResourceList{},
	}
	set := func(list corev1.ResourceList, name corev1.ResourceName, value string) {
		if value == "" {
			return
		}
		q, err := resource.ParseQuantity(value)
		if err != nil {
			klog.Errorf("skipping invalid %s quantity %q: %v", name, value, err)
			return
		}
		list[name] = q
	}
	set(req.Limits, corev1.ResourceCPU, limits.CpuLimit)
	set(req.Limits, corev1.ResourceMemory, limits.MemoryLimit)
	set(req.Requests, corev1.ResourceCPU, limits.CpuRequest)
	set(req.Requests, corev1.ResourceMemory, limits.MemoryRequest)
	return req
}
