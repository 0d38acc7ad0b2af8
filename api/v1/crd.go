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

package v1

import (
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

const (
	// Plural is the resource name of SyncSecret.
	Plural = "syncsecrets"

	// CRDName is the name of the SyncSecret CustomResourceDefinition.
	CRDName = Plural + ".homerow.ca"
)

// CustomResourceDefinition returns the declaration of the SyncSecret kind,
// ready to be applied to a cluster.
func CustomResourceDefinition() *apiextensionsv1.CustomResourceDefinition {
	str := func(description string) apiextensionsv1.JSONSchemaProps {
		return apiextensionsv1.JSONSchemaProps{Type: "string", Description: description}
	}

	secretRef := apiextensionsv1.JSONSchemaProps{
		Type:        "object",
		Description: "Secret identifies the source Secret.",
		Required:    []string{"name", "namespace"},
		Properties: map[string]apiextensionsv1.JSONSchemaProps{
			"name":      str("Name is the name of the Secret."),
			"namespace": str("Namespace is the namespace of the Secret."),
		},
	}

	spec := apiextensionsv1.JSONSchemaProps{
		Type:        "object",
		Description: "spec defines the desired replication of a Secret",
		Required:    []string{"secret", "destinationNamespaces"},
		Properties: map[string]apiextensionsv1.JSONSchemaProps{
			"secret": secretRef,
			"destinationNamespaces": {
				Type:        "array",
				Description: "DestinationNamespaces lists the namespaces the source is copied into.",
				Items: &apiextensionsv1.JSONSchemaPropsOrArray{
					Schema: &apiextensionsv1.JSONSchemaProps{Type: "string"},
				},
			},
		},
	}

	return &apiextensionsv1.CustomResourceDefinition{
		TypeMeta: metav1.TypeMeta{
			APIVersion: apiextensionsv1.SchemeGroupVersion.String(),
			Kind:       "CustomResourceDefinition",
		},
		ObjectMeta: metav1.ObjectMeta{Name: CRDName},
		Spec: apiextensionsv1.CustomResourceDefinitionSpec{
			Group: GroupVersion.Group,
			Names: apiextensionsv1.CustomResourceDefinitionNames{
				Kind:     Kind,
				ListKind: Kind + "List",
				Plural:   Plural,
				Singular: "syncsecret",
			},
			Scope: apiextensionsv1.ClusterScoped,
			Versions: []apiextensionsv1.CustomResourceDefinitionVersion{{
				Name:    GroupVersion.Version,
				Served:  true,
				Storage: true,
				Schema: &apiextensionsv1.CustomResourceValidation{
					OpenAPIV3Schema: &apiextensionsv1.JSONSchemaProps{
						Type:        "object",
						Description: "SyncSecret is the Schema for the syncsecrets API.",
						Required:    []string{"spec"},
						Properties: map[string]apiextensionsv1.JSONSchemaProps{
							"apiVersion": str("APIVersion defines the versioned schema of this representation of an object."),
							"kind":       str("Kind is a string value representing the REST resource this object represents."),
							"metadata":   {Type: "object"},
							"spec":       spec,
						},
					},
				},
				AdditionalPrinterColumns: []apiextensionsv1.CustomResourceColumnDefinition{
					{Name: "Source", Type: "string", JSONPath: ".spec.secret.name"},
					{Name: "Source Namespace", Type: "string", JSONPath: ".spec.secret.namespace"},
					{Name: "Age", Type: "date", JSONPath: ".metadata.creationTimestamp"},
				},
			}},
		},
	}
}

// CustomResourceDefinitionYAML renders CustomResourceDefinition as YAML.
func CustomResourceDefinitionYAML() ([]byte, error) {
	return yaml.Marshal(CustomResourceDefinition())
}
