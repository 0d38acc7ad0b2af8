/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package feed

import (
	"context"
	"errors"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ErrMalformed wraps responses the feed cannot interpret.
var ErrMalformed = errors.New("malformed response")

// ListerWatcher is the list-then-watch endpoint of one collection.
type ListerWatcher interface {
	List(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error)
	Watch(ctx context.Context, opts metav1.ListOptions) (watch.Interface, error)
}

// ClientListerWatcher lists and watches one collection through a
// controller-runtime client, across all namespaces unless Namespace is set.
type ClientListerWatcher struct {
	Client client.WithWatch

	// NewList returns an empty list of the watched kind, e.g. &corev1.SecretList{}.
	NewList func() client.ObjectList

	Namespace string
}

var _ ListerWatcher = &ClientListerWatcher{}

func (c *ClientListerWatcher) options(opts metav1.ListOptions) *client.ListOptions {
	return &client.ListOptions{Namespace: c.Namespace, Raw: &opts}
}

// List implements ListerWatcher.
func (c *ClientListerWatcher) List(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error) {
	list := c.NewList()
	if err := c.Client.List(ctx, list, c.options(opts)); err != nil {
		return nil, err
	}
	return list, nil
}

// Watch implements ListerWatcher.
func (c *ClientListerWatcher) Watch(ctx context.Context, opts metav1.ListOptions) (watch.Interface, error) {
	return c.Client.Watch(ctx, c.NewList(), c.options(opts))
}

// IsFatal reports whether err cannot be cured by reconnecting: the caller is
// not allowed to read the collection, the collection does not exist, or the
// server answered with something the feed cannot decode.
func IsFatal(err error) bool {
	switch {
	case errors.Is(err, ErrMalformed),
		apierrors.IsUnauthorized(err),
		apierrors.IsForbidden(err),
		apierrors.IsBadRequest(err),
		apierrors.IsNotFound(err),
		apierrors.IsMethodNotSupported(err),
		meta.IsNoMatchError(err),
		runtime.IsNotRegisteredError(err):
		return true
	}
	return false
}
