/*
Copyright 2026 The llm-d Authors

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

// The file defines the route abstraction shared by all api handlers.
package common

import (
	"net/http"
)

type Route struct {
	Method      string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

// ApiHandler is implemented by every handler group registered on the server mux.
type ApiHandler interface {
	GetRoutes() []Route
}

// RegisterHandler registers each route as a "METHOD /pattern" ServeMux pattern,
// so requests with other methods are answered with 405 by the mux.
func RegisterHandler(mux *http.ServeMux, handler ApiHandler) {
	for _, route := range handler.GetRoutes() {
		mux.HandleFunc(route.Method+" "+route.Pattern, route.HandlerFunc)
	}
}
