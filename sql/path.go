// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sql

// Path is the closed sum type of SPARQL 1.1 property paths (§3).
type Path interface {
	isPath()
}

// PathElt is a single predicate IRI.
type PathElt struct {
	IRI string
}

func (PathElt) isPath() {}

// PathSeq is the sequence path A/B.
type PathSeq struct {
	A, B Path
}

func (PathSeq) isPath() {}

// PathAlt is the alternative path A|B.
type PathAlt struct {
	A, B Path
}

func (PathAlt) isPath() {}

// PathInv is the inverse path ^A.
type PathInv struct {
	A Path
}

func (PathInv) isPath() {}

// PathMod enumerates the Kleene-style path modifiers.
type PathMod int

const (
	// ModStar is A*.
	ModStar PathMod = iota
	// ModPlus is A+.
	ModPlus
	// ModOpt is A?.
	ModOpt
)

// PathMul is a repeated path A{Mod}.
type PathMul struct {
	A   Path
	Mod PathMod
}

func (PathMul) isPath() {}

// PathNeg is a negated property set !(p1|p2|...).
type PathNeg struct {
	Alternatives []Path
}

func (PathNeg) isPath() {}
