/*

Package base provides base data structures and functions for factorize.

The base data structures and functions include:

* Random Generator

* CSV Reading

* Panic Recovery

*/
package base
