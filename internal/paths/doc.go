// Provides platform-appropriate default locations for cradle.
//
// The extracted image root lives under the XDG data directory so that large
// filesystem trees stay out of cache and runtime directories. Every root has
// a sibling lock file used to keep concurrent pulls and runs off the same
// directory.
package paths
