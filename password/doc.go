// Package password hashes and checks the passwords of the in-memory
// directory with Argon2id.
//
// Hashes use the PHC string format, so seed files can carry hashes produced
// by other Argon2id tools:
//
//	$argon2id$v=19$m=<memory KiB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// Salt and key are unpadded standard base64, as the reference encoder writes
// them. Padded input is accepted as well.
package password
