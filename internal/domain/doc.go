// Package domain contains the core business entities, value objects, and
// domain logic of the registration task service, independent of any
// specific infrastructure or delivery mechanism.
package domain
