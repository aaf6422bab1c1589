// Package validation collects definition faults instead of failing fast,
// so a user declaring a pipeline sees every problem at once. It offers a
// fluent Validator for programmatic construction and tag-based struct
// validation for definitions loaded from YAML.
package validation
