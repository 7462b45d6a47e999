// Package busserver exports the application object tree that
// bluetooth-meshd calls back into.
//
// The tree is rooted at the application path:
//
//	<app>          org.bluez.mesh.Application1
//	               org.bluez.mesh.ProvisionAgent1
//	               org.freedesktop.DBus.ObjectManager
//	<app>/<index>  org.bluez.mesh.Element1
//
// Every object also carries org.freedesktop.DBus.Properties and
// org.freedesktop.DBus.Introspectable. Property values are fixed for the
// life of the process.
package busserver
