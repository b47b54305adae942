// Package objects contains the value types shared by biz, api and the stores.
// To avoid circular dependencies, we put them here.
package objects
