// Package check contains the building blocks of the validation
// pipeline: the syntax filter, the MX lookup, the catch-all
// classifier, the single-attempt SMTP probe and the retrying wrapper
// around it. These types can be used directly, but the recommended
// approach is to drive them through the Verifier in the
// github.com/mailprobe/mailprobe package.
package check
