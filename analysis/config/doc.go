// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename.

A config file should be in yaml format. The top-level fields can be any of
the fields defined in the Config struct type. For example, a valid config
file is as follows:

	log-level: 4
	func-filter: "^demo"
	viz-dot: true
	viz-dir: out

The func-filter string is seen as a regex if it can be compiled to a
regex, otherwise it is matched as a prefix.

# Unsafe options

Options that might affect the soundness of the results are prefixed by
`skip-`: skip-region-check disables the validation of the region facts
against the loans of the analyzed body.
*/
package config
