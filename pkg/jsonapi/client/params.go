package client

import (
	"fmt"
	"net/url"
	"strings"
)

func Include(paths ...string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, "include="+url.QueryEscape(strings.Join(paths, ",")))
	}
}

// Fields limits the attributes returned for resources of the given type
func Fields(resourceType string, names ...string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("fields[%s]=%s", resourceType, url.QueryEscape(strings.Join(names, ","))))
	}
}

func Filter(name, value string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("filter[%s]=%s", name, url.QueryEscape(value)))
	}
}

// Sort orders a collection. Prefix a field with - to sort descending.
func Sort(fields ...string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, "sort="+url.QueryEscape(strings.Join(fields, ",")))
	}
}

func Page(name, value string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("page[%s]=%s", name, url.QueryEscape(value)))
	}
}

func Offset(offset int) RequestDecoratorFunc {
	return Page("offset", fmt.Sprintf("%d", offset))
}

func Limit(limit int) RequestDecoratorFunc {
	return Page("limit", fmt.Sprintf("%d", limit))
}
